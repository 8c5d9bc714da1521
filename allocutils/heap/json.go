package heap

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// HeapJsonData populates a json object with this instance's diagnostics.
func (h *Instance) HeapJsonData(json *jwriter.ObjectState) {
	diag := h.record.diagnostics
	json.Name("Capacity").Int(diag.Capacity)
	json.Name("Allocated").Int(diag.Allocated)
	json.Name("PeakAllocated").Int(diag.PeakAllocated)
	json.Name("PeakRequestSize").Int(diag.PeakRequestSize)
	json.Name("OOMCount").Int(diag.OOMCount)
}

// WriteDetailedMap streams a JSON description of the heap: the diagnostics
// followed by the fragment map in address order. Callers must synchronize
// externally.
func (h *Instance) WriteDetailedMap(writer *jwriter.Writer) {
	obj := writer.Object()
	defer obj.End()

	h.HeapJsonData(&obj)

	fragments := obj.Name("Fragments").Array()
	defer fragments.End()

	for f := h.firstFragment(); f != nil; f = f.next {
		fragObj := fragments.Object()
		fragObj.Name("Offset").Int(h.fragmentOffset(f))
		fragObj.Name("Size").Int(f.size)
		fragObj.Name("Free").Bool(!f.used)
		fragObj.End()
	}
}
