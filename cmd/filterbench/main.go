// Command filterbench applies color presets to images over a CLI or an HTTP API and
// benchmarks the direct and accelerated filter backends.
package main

func main() {
	Execute()
}
