package main

import "github.com/tiendafacil/tienda/cmd/tiendaapi/cmd"

func main() {
	cmd.Execute()
}
