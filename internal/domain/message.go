package domain

// IncomingMessage is the actionable part of an inbound webhook delivery:
// a text message from one user, with their display name.
type IncomingMessage struct {
	From string
	Text string
	Name string
}

// Receipt carries everything the renderer needs to draw a doom receipt.
type Receipt struct {
	UserName     string
	DoomScore    int
	Summary      string
	RealityCheck string
}
