// Command recipe-box runs the recipe manager web server and its maintenance
// tasks.
//
//	recipe-box            same as "recipe-box serve"
//	recipe-box serve      start the HTTP server
//	recipe-box sweep      remove unreferenced uploaded images
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
