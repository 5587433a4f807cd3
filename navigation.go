package filedb

import "fmt"

// Navigation is what a node search hands back to the tree: either a matched
// element (Key equals the searched key) or a pointer to where the search
// should continue (Link).
type Navigation struct {
	key       uint64
	value     uint64
	link      uint64
	linkRight uint64
	linkLeft  uint64
}

// newNavigation takes key, value, right link and left link in that order;
// missing trailing fields stay zero.
func newNavigation(fields ...uint64) Navigation {
	var f [4]uint64
	copy(f[:], fields)
	return Navigation{
		key:       f[0],
		value:     f[1],
		linkRight: f[2],
		linkLeft:  f[3],
	}
}

func (n Navigation) withLink(link uint64) Navigation {
	n.link = link
	return n
}

func (n Navigation) Key() uint64       { return n.key }
func (n Navigation) Value() uint64     { return n.value }
func (n Navigation) Link() uint64      { return n.link }
func (n Navigation) LinkRight() uint64 { return n.linkRight }
func (n Navigation) LinkLeft() uint64  { return n.linkLeft }

func (n Navigation) String() string {
	return fmt.Sprintf("{key=%d val=%d link=%d right=%d left=%d}", n.key, n.value, n.link, n.linkRight, n.linkLeft)
}
