package world

// Coord addresses one voxel.
type Coord struct {
	X, Y, Z int
}

// Resolve folds a change log, in order, into the current per-coordinate block
// state: last writer wins, a remove clears the coordinate until a later place.
// It is a pure read-side convenience — the log itself stays the source of
// truth, and the same log always resolves to the same state.
func Resolve(changes []BlockChange) map[Coord]string {
	state := make(map[Coord]string)
	for _, c := range changes {
		pos := Coord{c.X, c.Y, c.Z}
		switch c.Action {
		case ActionPlace:
			state[pos] = c.Type
		case ActionRemove:
			delete(state, pos)
		}
	}
	return state
}
