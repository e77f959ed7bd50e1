// Package rchan defines the domain types and interfaces for the board-watch
// engine. This package has no project imports -- it is the dependency root,
// the same role a gateway.go plays for a request-routing core.
package rchan

import "strconv"

// Kind identifies which upstream resource an Endpoint addresses.
type Kind int

const (
	// KindBoards addresses the board list (/boards.json).
	KindBoards Kind = iota
	// KindThreads addresses a board's threads summary (/<board>/threads.json).
	KindThreads
	// KindCatalog addresses a board's catalog (/<board>/catalog.json).
	KindCatalog
	// KindArchive addresses a board's archive (/<board>/archive.json).
	KindArchive
	// KindIndex addresses one page of a board's index (/<board>/<page>.json).
	KindIndex
	// KindThread addresses a single thread (/<board>/thread/<no>.json).
	KindThread
)

// Endpoint is a tagged value identifying one upstream resource. Two
// endpoints are equal iff all components match, so Endpoint is used
// directly as a map key by the response cache and by callers tracking
// per-endpoint conditional-request state.
type Endpoint struct {
	Kind   Kind
	Board  string
	Page   int
	Thread int
}

// Boards returns the Endpoint for the board list.
func Boards() Endpoint { return Endpoint{Kind: KindBoards} }

// Threads returns the Endpoint for a board's threads summary.
func Threads(board string) Endpoint { return Endpoint{Kind: KindThreads, Board: board} }

// Catalog returns the Endpoint for a board's catalog.
func Catalog(board string) Endpoint { return Endpoint{Kind: KindCatalog, Board: board} }

// Archive returns the Endpoint for a board's archive.
func Archive(board string) Endpoint { return Endpoint{Kind: KindArchive, Board: board} }

// Index returns the Endpoint for one page of a board's index.
func Index(board string, page int) Endpoint { return Endpoint{Kind: KindIndex, Board: board, Page: page} }

// Thread returns the Endpoint for a single thread.
func Thread(board string, no int) Endpoint { return Endpoint{Kind: KindThread, Board: board, Thread: no} }

// URL renders the endpoint to a request URL. https selects the scheme;
// endpoint identity (equality, hashing) never depends on it -- two
// Endpoint values with the same Kind/Board/Page/Thread are the same
// cache key regardless of which scheme a particular caller renders.
func (e Endpoint) URL(https bool) string {
	scheme := "http"
	if https {
		scheme = "https"
	}
	return scheme + "://a.4cdn.org" + e.path()
}

func (e Endpoint) path() string {
	switch e.Kind {
	case KindBoards:
		return "/boards.json"
	case KindThreads:
		return "/" + e.Board + "/threads.json"
	case KindCatalog:
		return "/" + e.Board + "/catalog.json"
	case KindArchive:
		return "/" + e.Board + "/archive.json"
	case KindIndex:
		return "/" + e.Board + "/" + strconv.Itoa(e.Page) + ".json"
	case KindThread:
		return "/" + e.Board + "/thread/" + strconv.Itoa(e.Thread) + ".json"
	default:
		return "/"
	}
}

// String returns a short human-readable form for logging.
func (e Endpoint) String() string {
	return e.path()
}
