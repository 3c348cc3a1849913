package notifications

import (
	"strings"
)

// Recipients is the resolved to/cc address lists for one notification.
type Recipients struct {
	To []string
	CC []string
}

// All returns to ∪ cc with duplicates removed, for the delivery log.
func (r Recipients) All() []string {
	set := newAddrSet()
	for _, a := range r.To {
		set.add(a)
	}
	for _, a := range r.CC {
		set.add(a)
	}
	return set.list()
}

// addrSet is an insertion-ordered, case-normalizing address set. Two CC
// entries differing only by case must not produce two sends.
type addrSet struct {
	seen  map[string]bool
	addrs []string
}

func newAddrSet(addrs ...string) *addrSet {
	s := &addrSet{seen: make(map[string]bool)}
	for _, a := range addrs {
		s.add(a)
	}
	return s
}

func (s *addrSet) add(addr string) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if addr == "" || s.seen[addr] {
		return
	}
	s.seen[addr] = true
	s.addrs = append(s.addrs, addr)
}

func (s *addrSet) contains(addr string) bool {
	return s.seen[strings.ToLower(strings.TrimSpace(addr))]
}

func (s *addrSet) list() []string {
	if s.addrs == nil {
		return []string{}
	}
	return s.addrs
}
