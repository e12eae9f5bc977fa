// Command abridge extracts a referentially-consistent subset of a
// relational database and, optionally, replays it into a destination.
package main

import "github.com/dbsmedya/abridge/cmd/abridge/cmd"

func main() {
	cmd.Execute()
}
