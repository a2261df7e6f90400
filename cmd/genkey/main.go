// Command genkey prints a random signing secret for JWT_SECRET.
package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
)

func main() {
	size := flag.Int("bytes", 48, "number of random bytes in the secret")
	flag.Parse()
	if *size < 32 {
		log.Fatal("a signing secret needs at least 32 bytes")
	}

	secret := make([]byte, *size)
	if _, err := rand.Read(secret); err != nil {
		log.Fatal("failed to read random bytes: ", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(secret)

	fmt.Println("========================================")
	fmt.Println("JWT SECRET:")
	fmt.Println(encoded)
	fmt.Println("========================================")
	fmt.Println("Add it to the .env of the gateway and the identity service:")
	fmt.Println("JWT_SECRET=" + encoded)
}
