// Command armanet builds, trains and evaluates ARMA ResNets.
package main

import "github.com/born-ml/armanet/internal/cli"

func main() {
	cli.Execute()
}
