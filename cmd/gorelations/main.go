package main

import "github.com/dbsmedya/gorelations/cmd/gorelations/cmd"

func main() {
	cmd.Execute()
}
