package feed

import "github.com/google/uuid"

// uidNamespace scopes synthesized identifiers so they cannot collide
// with UIDs minted by other producers.
var uidNamespace = uuid.NewMD5(uuid.NameSpaceDNS, []byte("impactcal"))

const uidSuffix = "@impactcal"

// SynthesizeUID derives a stable identifier for an event that carries
// none. The hash input is limited to the fields that identify the
// occurrence (summary, raw start value, description), so repeated runs
// over unchanged input publish byte-identical feeds.
func SynthesizeUID(ev Event) string {
	var seed []byte
	seed = append(seed, ev.Summary...)
	seed = append(seed, 0)
	seed = append(seed, ev.StartRaw...)
	seed = append(seed, 0)
	seed = append(seed, ev.Description...)
	return uuid.NewMD5(uidNamespace, seed).String() + uidSuffix
}
