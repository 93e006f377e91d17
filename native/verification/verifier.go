package verification

// InlineVerifier resolves every routed proposal within the propose call
// itself, applying a policy function to decide acceptance. A nil policy
// accepts everything, which is the configuration used by pools that trust
// their authorization service to pre-screen contributions.
type InlineVerifier struct {
	policy func(id uint64, tag string) bool
}

// NewInlineVerifier builds an inline verifier. Register it with
// Coordinator.RegisterHook under the verifier address routing should select.
func NewInlineVerifier(policy func(id uint64, tag string) bool) *InlineVerifier {
	return &InlineVerifier{policy: policy}
}

// VerifyContribution implements Verifier.
func (v *InlineVerifier) VerifyContribution(resolve func(accept bool) error, id uint64, tag string) error {
	accept := true
	if v.policy != nil {
		accept = v.policy(id, tag)
	}
	return resolve(accept)
}
