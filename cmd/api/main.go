// Package main is the entry point for the nemt dispatch server and its
// operator commands. Its sole responsibility is wiring dependencies together.
// No business logic belongs here.
package main

func main() {
	Execute()
}
