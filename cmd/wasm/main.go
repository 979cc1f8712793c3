//go:build js && wasm

// Command wasm exposes the scenario simulator to the browser via WebAssembly.
// After loading, it registers a global JavaScript function:
//
//	runScenario(jsonString) -> jsonString
//
// The input and output are the JSON-encoded scenario Input and Log, the same contract
// as the CLI run command and the HTTP /simulate endpoint.
package main

import (
	"syscall/js"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/scenario"
)

func main() {
	js.Global().Set("runScenario", js.FuncOf(runScenario))
	select {} // keep the WASM module alive until the page is closed
}

func runScenario(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return map[string]any{"error": "no input provided"}
	}

	result, err := scenario.RunJSON(args[0].String())
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}
