package main

import (
	"fmt"
	"log"
	"os"

	"github.com/hferret/shelfarr/internal/secrets"
)

// Encrypts a download client credential with the configured passphrase so
// it can be inserted into the database by hand.
func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: encrypt-password <passphrase> <credential>")
		os.Exit(1)
	}

	encryptor, err := secrets.New(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to create encryptor: %v", err)
	}
	if encryptor == nil {
		log.Fatal("Passphrase must not be empty")
	}

	ciphertext, err := encryptor.Encrypt(os.Args[2])
	if err != nil {
		log.Fatalf("Failed to encrypt credential: %v", err)
	}

	fmt.Println(ciphertext)
}
