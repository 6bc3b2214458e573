// Command pagingsim runs workloads against the demand-paging kernel.
package main

import "github.com/sarchlab/demandpaging/pagingsim/cmd"

func main() {
	cmd.Execute()
}
