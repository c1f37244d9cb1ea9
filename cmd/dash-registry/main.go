// Command dash-registry inspects and exercises the masternode registry.
package main

import "github.com/kwvg/dash/cmd/dash-registry/cmd"

func main() {
	cmd.Execute()
}
