package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"matchbot/pkg/config"
	"matchbot/pkg/jwt"
)

// Issues a bearer token for the gateway API, signed with JWT_SECRET.
// The chat adapter runs with a service token; user tokens are handy for manual testing.
func main() {
	subject := flag.String("subject", "chat-adapter", "token subject: adapter name or platform user id")
	role := flag.String("role", jwt.RoleService, "token role: service or user")
	flag.Parse()

	switch *role {
	case jwt.RoleService:
	case jwt.RoleUser:
		if _, err := strconv.ParseInt(*subject, 10, 64); err != nil {
			fmt.Fprintf(os.Stderr, "user tokens need a numeric platform id as subject, got %q\n", *subject)
			os.Exit(2)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	token, err := jwt.NewService(cfg.JWTSecret).GenerateToken(*subject, *role)
	if err != nil {
		panic(fmt.Sprintf("Failed to sign token: %v", err))
	}
	fmt.Println(token)
}
