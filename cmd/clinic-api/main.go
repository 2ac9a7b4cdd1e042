package main

import "github.com/kenko/clinic-api/internal/cli"

func main() {
	cli.Execute()
}
