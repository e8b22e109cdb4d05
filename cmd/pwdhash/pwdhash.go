package main

import (
	"fmt"
	"os"

	"github.com/cyclopcam/vidlabel/pkg/pwdhash"
)

// Takes a password as the first argument, and prints out a base64 encoded version of the hashed password.
// You can use this to set a user's password in the database manually.
// For example:
// sqlite3 vidlabel.sqlite "update user set password = 'HASHEDPASSWORD' where email = 'admin@example.com'"

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: pwdhash <password>\n")
		os.Exit(1)
	}
	password := os.Args[1]
	fmt.Printf("%v\n", pwdhash.HashPasswordBase64(password))
}
