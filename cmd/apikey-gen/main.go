package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/logcove/logcove/pkg/auth"
	"github.com/logcove/logcove/pkg/model"
)

func main() {
	clientID := flag.String("client", "", "Client ID to issue the key for (default: random)")
	projects := flag.String("projects", "", "Comma-separated project scope (default: all projects)")
	secret := flag.String("secret", os.Getenv("LOGCOVE_AUTH_SECRET"), "Signing secret (or LOGCOVE_AUTH_SECRET)")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "A signing secret is required (-secret or LOGCOVE_AUTH_SECRET)")
		os.Exit(1)
	}

	id := *clientID
	if id == "" {
		id = uuid.NewString()
	}

	var scope []model.LogProject
	if *projects != "" {
		for _, s := range strings.Split(*projects, ",") {
			p, err := model.ParseProject(strings.TrimSpace(s))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid project scope: %v\n", err)
				os.Exit(1)
			}
			scope = append(scope, p)
		}
	}

	key, err := auth.IssueAPIKey(id, scope, []byte(*secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Client ID: %s\n", id)
	fmt.Printf("API Key:   %s\n", key)
}
