/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"context"
	"os"

	"apiview/cmd"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
