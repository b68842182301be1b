package wire

// NoticeHook inspects a NoticeResponse and returns true if it has handled
// the notice, stopping further propagation down the chain.
type NoticeHook func(notice *Notice) (handled bool)

// Notice is a decoded NoticeResponse: an advisory message from the server
// that is not an error (§7: "Messages (NoticeResponse) are not errors").
type Notice struct {
	Severity string
	Code     string
	Message  string
	Detail   string
	Hint     string
}

// NoticeHooks holds the per-link callback lists of the notice hook chain
// (§9: output -> statement -> connection -> driver -> process). Each link
// is walked in order; the first hook in the first non-empty link to
// return true stops propagation.
type NoticeHooks struct {
	Statement  []NoticeHook
	Connection []NoticeHook
	Driver     []NoticeHook
	Process    []NoticeHook
}

// dispatch walks the chain link by link, stopping at the first hook that
// reports it handled the notice.
func (h NoticeHooks) dispatch(notice *Notice) {
	for _, link := range [][]NoticeHook{h.Statement, h.Connection, h.Driver, h.Process} {
		for _, hook := range link {
			if hook(notice) {
				return
			}
		}
	}
}
