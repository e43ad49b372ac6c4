// Command forge assembles commercial proposals from client requirements and
// provisions the projects they spawn once approved.
package main

func main() {
	Execute()
}
