// Command tick validates, inspects, replays and serves Tick stories.
package main

func main() {
	Execute()
}
