// Command devtoken prints a bearer token for a local server, standing in for
// the identity provider during development:
//
//	journal login --token "$(devtoken -u 42 -s secretKey)"
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/server/auth"
)

func main() {
	userID := flag.String("u", "", "user id to embed in the token")
	secret := flag.String("s", "secretKey", "server secret key")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		log.Fatal("-u is required")
	}

	token, err := auth.GenerateToken(*userID, []byte(*secret), *ttl)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(token)
}
