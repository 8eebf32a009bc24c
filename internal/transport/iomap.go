package transport

// mapIO fills table with the unit's channel slots for one block and returns
// the slot count, max(ins, outs).
//
// Slot i aliases device output i when i < outs; the remaining slots (only
// present when ins > outs) use scratch, never device input memory. Slots
// below ins receive a copy of device input i % len(inputs), or zeros when
// the device has no inputs; other slots are zeroed. Device outputs not
// covered by a slot are zeroed.
//
// table and scratch must hold at least max(ins, outs) entries and every
// scratch channel at least n samples.
func mapIO(inputs, outputs [][]float32, n, ins, outs int, scratch, table [][]float32) int {
	total := max(ins, outs)

	for i := range total {
		var ch []float32
		if i < outs && i < len(outputs) {
			ch = outputs[i][:n]
		} else {
			ch = scratch[i][:n]
		}

		switch {
		case i >= ins:
			clear(ch)
		case len(inputs) == 0:
			clear(ch)
		default:
			copy(ch, inputs[i%len(inputs)][:n])
		}

		table[i] = ch
	}

	for i := min(outs, len(outputs)); i < len(outputs); i++ {
		clear(outputs[i][:n])
	}

	return total
}

// silence zeroes the first n samples of every output channel.
func silence(outputs [][]float32, n int) {
	for _, ch := range outputs {
		clear(ch[:min(n, len(ch))])
	}
}
