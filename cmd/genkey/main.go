package main

import (
	"fmt"
	"os"

	"github.com/uhyunpark/hypersigner/pkg/crypto"
)

// genkey mints a fresh agent keypair for callers of the signing gateway.
// The printed key goes into the agentPrivateKey request field once the
// agent is approved on the venue for the target wallet.
func main() {
	signer, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Agent Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
}
