package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"revledger/crypto"
	"revledger/native/distribution"
	"revledger/native/registry"
)

var rpcEndpoint = defaultRPCEndpoint()
var rpcAuthToken = os.Getenv("REVLEDGER_RPC_JWT")

func main() {
	args := os.Args[1:]
	var err error
	args, err = applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(args) < 1 {
		printUsage()
		return
	}

	command := args[0]
	switch command {
	case "generate-key":
		if len(args) < 2 {
			fmt.Println("Error: Please provide an output file.")
			printUsage()
			return
		}
		generateKey(args[1])
	case "sign-proposal":
		if len(args) < 6 {
			fmt.Println("Error: Please provide a key file, registry id, contribution id, owner and tag.")
			printUsage()
			return
		}
		id, err := strconv.ParseUint(args[3], 10, 64)
		if err != nil {
			fmt.Println("Error: Invalid contribution id.")
			return
		}
		signProposal(args[1], args[2], id, args[4], args[5])
	case "sign-claim":
		if len(args) < 5 {
			fmt.Println("Error: Please provide a key file, registry id, claim kind and account.")
			printUsage()
			return
		}
		signClaim(args[1], args[2], args[3], args[4])
	case "propose":
		if len(args) < 4 {
			fmt.Println("Error: Please provide an owner, tag and signature.")
			printUsage()
			return
		}
		propose(args[1], args[2], args[3])
	case "contribution":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a contribution id.")
			printUsage()
			return
		}
		id, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fmt.Println("Error: Invalid contribution id.")
			return
		}
		contribution(id)
	case "tag-counts":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a snapshot index.")
			printUsage()
			return
		}
		snapshot, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fmt.Println("Error: Invalid snapshot index.")
			return
		}
		tagCounts(snapshot)
	case "receive-payment":
		if len(args) < 3 {
			fmt.Println("Error: Please provide a currency and amount.")
			printUsage()
			return
		}
		receivePayment(args[1], args[2])
	case "claim":
		if len(args) < 2 {
			fmt.Println("Error: Please provide a ticket file.")
			printUsage()
			return
		}
		claim(args[1])
	case "project":
		if len(args) < 3 {
			fmt.Println("Error: Please provide an account and currency.")
			printUsage()
			return
		}
		project(args[1], args[2])
	case "balance":
		if len(args) < 3 {
			fmt.Println("Error: Please provide an account and currency.")
			printUsage()
			return
		}
		balance(args[1], args[2])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
	}
}

func printUsage() {
	fmt.Println(`Usage: revledger-cli [--rpc <url>] <command> [args]

Key management:
  generate-key <file>                                     Create a new keystore file
  sign-proposal <keyfile> <registry> <id> <owner> <tag>   Sign a contribution proposal
  sign-claim <keyfile> <registry> <kind> <account>        Produce a signed claim ticket

Ledger operations:
  propose <owner> <tag> <signature>     Submit a signed contribution proposal
  contribution <id>                     Show one contribution
  tag-counts <snapshot>                 Show global tag counts at a snapshot
  receive-payment <currency> <amount>   Record a payment (requires REVLEDGER_RPC_JWT)
  claim <ticket-file>                   Submit a claim ticket produced by sign-claim
  project <account> <currency>          Estimate the account's unclaimed payout
  balance <account> <currency>          Show the account's settled balance`)
}

func defaultRPCEndpoint() string {
	if url := strings.TrimSpace(os.Getenv("REVLEDGER_RPC_URL")); url != "" {
		return url
	}
	return "http://127.0.0.1:8080"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := args[:0]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--rpc requires a URL argument")
			}
			i++
			rpcEndpoint = args[i]
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

func generateKey(path string) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Printf("Error generating key: %v\n", err)
		return
	}
	if err := crypto.SaveToKeystore(path, key, os.Getenv("REVLEDGER_KEYSTORE_PASS")); err != nil {
		fmt.Printf("Error saving keystore: %v\n", err)
		return
	}
	fmt.Printf("New key saved to %s\nAddress: %s\n", path, key.PubKey().Address().String())
}

func loadKey(path string) (*crypto.PrivateKey, error) {
	return crypto.LoadFromKeystore(path, os.Getenv("REVLEDGER_KEYSTORE_PASS"))
}

func decodeAccount(value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, err
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func signProposal(keyFile, registryID string, id uint64, ownerStr, tag string) {
	key, err := loadKey(keyFile)
	if err != nil {
		fmt.Printf("Error loading key: %v\n", err)
		return
	}
	owner, err := decodeAccount(ownerStr)
	if err != nil {
		fmt.Printf("Error decoding owner: %v\n", err)
		return
	}
	ticket := registry.ProposeTicket{RegistryID: registryID, ID: id, Owner: owner, Tag: tag}
	sig, err := key.Sign(ticket.Hash())
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		return
	}
	fmt.Printf("0x%s\n", hex.EncodeToString(sig))
}

type ticketFile struct {
	RegistryID string `json:"registryId"`
	Kind       string `json:"kind"`
	Account    string `json:"account"`
	IssuedAt   int64  `json:"issuedAt"`
	ExpiresAt  int64  `json:"expiresAt"`
	Nonce      string `json:"nonce"`
	Signature  string `json:"signature"`
}

func signClaim(keyFile, registryID, kind, accountStr string) {
	key, err := loadKey(keyFile)
	if err != nil {
		fmt.Printf("Error loading key: %v\n", err)
		return
	}
	account, err := decodeAccount(accountStr)
	if err != nil {
		fmt.Printf("Error decoding account: %v\n", err)
		return
	}
	now := time.Now().Unix()
	ticket := distribution.ClaimTicket{
		RegistryID: registryID,
		Kind:       distribution.ClaimKind(kind),
		Account:    account,
		IssuedAt:   now,
		ExpiresAt:  now + 600,
		Nonce:      fmt.Sprintf("cli-%d", now),
	}
	sig, err := key.Sign(ticket.Hash())
	if err != nil {
		fmt.Printf("Error signing: %v\n", err)
		return
	}
	out := ticketFile{
		RegistryID: ticket.RegistryID,
		Kind:       string(ticket.Kind),
		Account:    accountStr,
		IssuedAt:   ticket.IssuedAt,
		ExpiresAt:  ticket.ExpiresAt,
		Nonce:      ticket.Nonce,
		Signature:  "0x" + hex.EncodeToString(sig),
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Printf("Error encoding ticket: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func propose(owner, tag, signature string) {
	callAndPrint("reg_propose", map[string]interface{}{
		"owner":     owner,
		"tag":       tag,
		"signature": signature,
	})
}

func contribution(id uint64) {
	callAndPrint("reg_contribution", map[string]interface{}{"id": id})
}

func tagCounts(snapshot uint64) {
	callAndPrint("reg_tagCounts", map[string]interface{}{"snapshot": snapshot})
}

func receivePayment(currency, amount string) {
	callAndPrint("dist_receivePayment", map[string]interface{}{
		"currency": currency,
		"amount":   amount,
	})
}

func claim(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Error reading ticket file: %v\n", err)
		return
	}
	var ticket ticketFile
	if err := json.Unmarshal(data, &ticket); err != nil {
		fmt.Printf("Error parsing ticket file: %v\n", err)
		return
	}
	method := "dist_claimContributor"
	switch ticket.Kind {
	case string(distribution.ClaimKindOwner):
		method = "dist_claimOwner"
	case string(distribution.ClaimKindAll):
		method = "dist_claimAll"
	}
	callAndPrint(method, map[string]interface{}{"ticket": ticket})
}

func project(account, currency string) {
	callAndPrint("dist_projectPayout", map[string]interface{}{
		"account":  account,
		"currency": currency,
	})
}

func balance(account, currency string) {
	callAndPrint("dist_balance", map[string]interface{}{
		"account":  account,
		"currency": currency,
	})
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int         `json:"code"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	} `json:"error"`
}

func callAndPrint(method string, params interface{}) {
	payload := rpcRequest{JSONRPC: "2.0", Method: method, Params: []interface{}{params}, ID: 1}
	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("Error encoding request: %v\n", err)
		return
	}
	req, err := http.NewRequest(http.MethodPost, rpcEndpoint, bytes.NewReader(body))
	if err != nil {
		fmt.Printf("Error building request: %v\n", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if rpcAuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+rpcAuthToken)
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error calling RPC: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		fmt.Printf("Error decoding response: %v\n", err)
		return
	}
	if decoded.Error != nil {
		fmt.Printf("RPC error %d: %s\n", decoded.Error.Code, decoded.Error.Message)
		if decoded.Error.Data != nil {
			fmt.Printf("  %v\n", decoded.Error.Data)
		}
		return
	}
	pretty := &bytes.Buffer{}
	if err := json.Indent(pretty, decoded.Result, "", "  "); err != nil {
		fmt.Println(string(decoded.Result))
		return
	}
	fmt.Println(pretty.String())
}
