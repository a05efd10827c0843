package main

import (
	"fmt"

	"github.com/tidewater/toolroute/internal/secrets"
)

func cmdSecret(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: toolroute secret <put|get|list|delete> [args...]")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	enc, err := secrets.LoadIdentity(cfg.AgeKeyPath)
	if err != nil {
		return fmt.Errorf("load identity (run 'toolroute init' first): %w", err)
	}
	vault := secrets.NewVault(cfg.VaultPath, enc)

	sub := args[0]
	rest := args[1:]

	switch sub {
	case "put":
		if len(rest) < 2 {
			return fmt.Errorf("usage: toolroute secret put <key> <value>")
		}
		if err := vault.Put(rest[0], []byte(rest[1])); err != nil {
			return fmt.Errorf("put secret: %w", err)
		}
		fmt.Printf("Secret %q set\n", rest[0])

	case "get":
		if len(rest) < 1 {
			return fmt.Errorf("usage: toolroute secret get <key>")
		}
		val, err := vault.Get(rest[0])
		if err != nil {
			return fmt.Errorf("get secret: %w", err)
		}
		fmt.Print(string(val))

	case "list":
		keys, err := vault.List()
		if err != nil {
			return fmt.Errorf("list secrets: %w", err)
		}
		for _, k := range keys {
			fmt.Println(k)
		}

	case "delete":
		if len(rest) < 1 {
			return fmt.Errorf("usage: toolroute secret delete <key>")
		}
		if err := vault.Delete(rest[0]); err != nil {
			return fmt.Errorf("delete secret: %w", err)
		}
		fmt.Printf("Secret %q deleted\n", rest[0])

	default:
		return fmt.Errorf("unknown secret command: %s\nUsage: toolroute secret <put|get|list|delete>", sub)
	}

	return nil
}
