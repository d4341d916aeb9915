package mac

import "github.com/lorawan-edge/mac-core/pkg/lorawan"

// MulticastGroup is a caller-owned node; the MAC never allocates or frees
// one. LinkMulticast/UnlinkMulticast only manage membership in the MAC's
// intrusive singly-linked list (§3 "Multicast groups": weak reference,
// relation + lookup, never ownership).
type MulticastGroup struct {
	Addr            lorawan.DevAddr
	NwkSKey         lorawan.AES128Key
	AppSKey         lorawan.AES128Key
	DownLinkCounter uint32

	next *MulticastGroup
}

// multicastList is the MAC's head pointer into the caller-owned chain.
type multicastList struct {
	head *MulticastGroup
}

// Link inserts g at the head of the list. g must not already be linked
// into any list; linking an already-linked node corrupts both chains.
func (l *multicastList) Link(g *MulticastGroup) {
	g.next = l.head
	l.head = g
}

// Unlink removes g from the list. It is a no-op if g is not present.
func (l *multicastList) Unlink(g *MulticastGroup) {
	if l.head == g {
		l.head = g.next
		g.next = nil
		return
	}
	for cur := l.head; cur != nil; cur = cur.next {
		if cur.next == g {
			cur.next = g.next
			g.next = nil
			return
		}
	}
}

// Find returns the group matching addr, or nil.
func (l *multicastList) Find(addr lorawan.DevAddr) *MulticastGroup {
	for cur := l.head; cur != nil; cur = cur.next {
		if cur.Addr == addr {
			return cur
		}
	}
	return nil
}
