package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
)

func (a *App) getStatus() string {
	s := ""
	if cred, ok := a.store.Current(); ok {
		s = cred.Subject.Email + " "
	}
	if a.Mode != "" {
		s = s + string(a.Mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) Root(ctx context.Context) {

	log.Println("Welcome to JobPort CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	if !a.isLoggedIn() {
		if err := a.Login(ctx); err != nil {
			log.Printf("login: %s", err.Error())
		}
	}

	go func() {
		a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
	}()

	for {
		fmt.Printf("jobport %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Println("Available commands: whoami, 2fa-enable, 2fa-disable, logout, logout-all, deactivate, exit")
			} else {
				fmt.Println("Available commands: login, exit")
			}

		case "login":
			err = a.Login(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "logout-all":
			err = a.LogoutAll(ctx)
		case "2fa-enable":
			err = a.EnableTwoFactor(ctx)
		case "2fa-disable":
			err = a.DisableTwoFactor(ctx)
		case "whoami":
			a.Whoami()
		case "deactivate":
			err = a.Deactivate(ctx)
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Unknown command:", cmd)
		}

		if err != nil {
			log.Printf("%s: %s", cmd, err.Error())
		}
	}

}
