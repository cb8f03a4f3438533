package room

import "log"

// Identity reconciliation. A client's connection identifier changes on page
// navigation or reconnect, but its logical seat, hand, score, and card usage
// must survive the change. reconcileLocked inspects the room and re-binds
// connID, migrating ownership from a stale identifier when needed.
//
// Cases, in order:
//  1. seated with a hand: already consistent.
//  2. seated without a hand: adopt an orphaned hand.
//  3. hand owner without a seat: take an open or handless seat.
//  4. neither: adopt an orphaned hand, then take a seat.
//  5. no orphaned hand exists: genuinely new identifier; it must go through
//     the hand-submission flow before it can select cards.
//
// Reports whether connID owns a hand afterwards. Idempotent: a second call
// with no intervening change hits case 1 and mutates nothing.
func (r *Room) reconcileLocked(connID string) bool {
	seated := r.seatIndexLocked(connID) >= 0
	_, hasHand := r.hands[connID]

	switch {
	case seated && hasHand:
		return true

	case seated && !hasHand:
		stale := r.orphanedOwnerLocked()
		if stale == "" {
			return false
		}
		r.adoptLocked(connID, stale)
		return true

	case !seated && hasHand:
		r.takeSeatLocked(connID)
		return true

	default:
		stale := r.orphanedOwnerLocked()
		if stale == "" {
			return false
		}
		r.adoptLocked(connID, stale)
		r.takeSeatLocked(connID)
		return true
	}
}

// orphanedOwnerLocked returns a hand owner occupying no seat, oldest
// submission first. More than one orphan means more than two identifiers
// have touched the room; the oldest is the least surprising choice.
func (r *Room) orphanedOwnerLocked() string {
	orphans := make([]string, 0, 1)
	for _, owner := range r.handOrder {
		if _, ok := r.hands[owner]; !ok {
			continue
		}
		if r.seatIndexLocked(owner) < 0 {
			orphans = append(orphans, owner)
		}
	}
	if len(orphans) == 0 {
		return ""
	}
	if len(orphans) > 1 {
		log.Printf("room %s: %d orphaned hands, adopting oldest (owner %s)", r.Code, len(orphans), orphans[0])
	}
	return orphans[0]
}

// adoptLocked moves the stale identifier's hand, score, and current-round
// selection onto connID. No card state is copied or lost: the hand slice
// itself changes owner.
func (r *Room) adoptLocked(connID, stale string) {
	r.hands[connID] = r.hands[stale]
	delete(r.hands, stale)
	for i, owner := range r.handOrder {
		if owner == stale {
			r.handOrder[i] = connID
		}
	}

	if score, ok := r.scores[stale]; ok {
		r.scores[connID] = score
		delete(r.scores, stale)
	} else if _, ok := r.scores[connID]; !ok {
		r.scores[connID] = 0
	}

	if sel := r.selected[r.round]; sel != nil {
		if card, ok := sel[stale]; ok {
			sel[connID] = card
			delete(sel, stale)
		}
	}
	log.Printf("room %s: identifier %s adopted hand from stale %s", r.Code, connID, stale)
}

// takeSeatLocked installs connID into the first open seat, or replaces an
// occupant that owns no hand.
func (r *Room) takeSeatLocked(connID string) bool {
	if idx := r.openSeatLocked(); idx >= 0 {
		r.seats[idx] = connID
		if _, ok := r.scores[connID]; !ok {
			r.scores[connID] = 0
		}
		return true
	}
	for i, occupant := range r.seats {
		if _, owns := r.hands[occupant]; !owns {
			delete(r.scores, occupant)
			r.seats[i] = connID
			if _, ok := r.scores[connID]; !ok {
				r.scores[connID] = 0
			}
			log.Printf("room %s: identifier %s superseded handless occupant %s", r.Code, connID, occupant)
			return true
		}
	}
	return false
}
