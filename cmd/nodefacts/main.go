// nodefacts - node attribute and run reporter
// Flatten. Write. Forward.
package main

func main() {
	Execute()
}
