package output_test

import (
	"fmt"

	"github.com/fathom-audio/plugsync/internal/diff"
	"github.com/fathom-audio/plugsync/internal/output"
)

func ExampleRenderUpdateTable() {
	fmt.Print(output.RenderUpdateTable(&diff.UpdateList{MachineName: "StudioA"}))
	// Output:
	// Nothing to update.
}

func ExampleRenderFleetTable() {
	fmt.Print(output.RenderFleetTable(&diff.Summary{}))
	// Output:
	// No snapshots found.
}
