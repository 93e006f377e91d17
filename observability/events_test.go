package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"revledger/core/events"
)

func TestLogEmitterRendersEventAttributes(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(slog.New(slog.NewJSONHandler(&buf, nil)))

	emitter.Emit(events.PaymentReceived{
		Index:         3,
		Currency:      "usd",
		Gross:         big.NewInt(1000),
		Pool:          big.NewInt(720),
		Snapshot:      2,
		WeightVersion: 1,
	})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "ledger event", line["msg"])
	require.Equal(t, events.TypePaymentReceived, line["type"])
	require.Equal(t, "usd", line["currency"])
	require.Equal(t, "1000", line["gross"])
	require.Equal(t, "720", line["pool"])
	require.Equal(t, "2", line["snapshot"])
	require.Equal(t, "1", line["weightVersion"])
}

func TestLogEmitterCountsLifecycleTransitions(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(slog.New(slog.NewJSONHandler(&buf, nil)))

	accepted := LedgerMetrics().contributions.WithLabelValues("accepted")
	removed := LedgerMetrics().contributions.WithLabelValues("removed")
	acceptedBefore := testutil.ToFloat64(accepted)
	removedBefore := testutil.ToFloat64(removed)

	var owner [20]byte
	owner[19] = 0xA0
	emitter.Emit(events.ContributionAccepted{ID: 0, Owner: owner, Tag: "schema"})
	emitter.Emit(events.ContributionRemoved{ID: 0, Accepted: true})

	require.Equal(t, acceptedBefore+1, testutil.ToFloat64(accepted))
	require.Equal(t, removedBefore+1, testutil.ToFloat64(removed))
}
