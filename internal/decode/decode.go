// Package decode implements the typed per-endpoint decoders the HTTP
// client facade uses to turn a response body into a rchan.DecodedResponse.
// JSON decoding itself is explicitly out of scope for the engine
// (spec.md Section 1 -- "assume a typed decoder per endpoint shape"), so
// this package is the stand-in for that assumed collaborator: thin,
// boring, one file per shape.
package decode

import (
	"fmt"

	rchan "github.com/rchanio/rchan/internal"
)

// Decode dispatches to the decoder matching kind and wraps the result in
// a DecodedResponse tagged with the same variant. An unrecognised kind
// is a programmer error, not a runtime condition -- it panics rather
// than surfacing InvalidResponse, since InvalidResponse is reserved for
// upstream body mismatches (spec.md Section 9).
func Decode(kind rchan.Kind, body []byte) (rchan.DecodedResponse, error) {
	switch kind {
	case rchan.KindBoards:
		boards, err := Boards(body)
		if err != nil {
			return rchan.DecodedResponse{}, err
		}
		return rchan.DecodedResponse{Variant: rchan.VariantBoards, Boards: boards}, nil

	case rchan.KindThreads:
		pages, err := Threads(body)
		if err != nil {
			return rchan.DecodedResponse{}, err
		}
		return rchan.DecodedResponse{Variant: rchan.VariantThreads, Threads: pages}, nil

	case rchan.KindCatalog:
		pages, err := Catalog(body)
		if err != nil {
			return rchan.DecodedResponse{}, err
		}
		return rchan.DecodedResponse{Variant: rchan.VariantCatalog, Catalog: pages}, nil

	case rchan.KindArchive:
		nos, err := Archive(body)
		if err != nil {
			return rchan.DecodedResponse{}, err
		}
		return rchan.DecodedResponse{Variant: rchan.VariantArchive, Archive: nos}, nil

	case rchan.KindIndex:
		page, err := Index(body)
		if err != nil {
			return rchan.DecodedResponse{}, err
		}
		return rchan.DecodedResponse{Variant: rchan.VariantIndex, Index: page}, nil

	case rchan.KindThread:
		thread, err := Thread(body)
		if err != nil {
			return rchan.DecodedResponse{}, err
		}
		return rchan.DecodedResponse{Variant: rchan.VariantThread, Thread: thread}, nil

	default:
		panic(fmt.Sprintf("decode: unknown endpoint kind %d", kind))
	}
}
