// Command hash-generator produces the bcrypt hash of an admin API key for
// the auth.admin_key_hash config setting (BIZSCAN_AUTH_ADMIN_KEY_HASH).
//
// Usage:
//
//	hash-generator <key>
//	echo -n "key" | hash-generator
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	key, err := readKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading key: %v\n", err)
		os.Exit(1)
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "Usage: hash-generator <key>  (or pipe the key on stdin)")
		os.Exit(2)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating hash: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(hash))
}

// readKey takes the key from the first argument, or from stdin when no
// argument is given (so the key stays out of shell history).
func readKey() (string, error) {
	if len(os.Args) > 1 {
		return strings.TrimSpace(os.Args[1]), nil
	}

	stat, err := os.Stdin.Stat()
	if err != nil {
		return "", err
	}
	// Only read stdin when something is piped in; never block on a TTY.
	if stat.Mode()&os.ModeCharDevice != 0 {
		return "", nil
	}

	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line), nil
}
