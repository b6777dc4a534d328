package seating

// distribute splits students across rooms before seat packing. Students whose preferred room
// matches a room id or name go there first while it has space; everybody else is dealt
// round-robin in input order, skipping full rooms. The result is indexed like rooms.
func distribute(students []Student, rooms []Room) [][]Student {
	buckets := make([][]Student, len(rooms))
	if len(rooms) == 0 {
		return buckets
	}

	lookup := make(map[string]int, len(rooms)*2)
	for i, room := range rooms {
		for _, key := range []string{room.ID, room.Name} {
			if key == "" {
				continue
			}
			if _, taken := lookup[key]; !taken {
				lookup[key] = i
			}
		}
	}

	remaining := make([]Student, 0, len(students))
	for _, st := range students {
		if st.PreferredRoom != "" {
			if idx, ok := lookup[st.PreferredRoom]; ok && len(buckets[idx]) < rooms[idx].Capacity() {
				buckets[idx] = append(buckets[idx], st)
				continue
			}
		}
		remaining = append(remaining, st)
	}

	cursor := 0
	for _, st := range remaining {
		idx, ok := nextOpenRoom(buckets, rooms, cursor)
		if !ok {
			// Every room is full: park the student on the cursor room so packing reports overflow.
			idx = cursor % len(rooms)
		}
		buckets[idx] = append(buckets[idx], st)
		cursor = idx + 1
	}
	return buckets
}

func nextOpenRoom(buckets [][]Student, rooms []Room, cursor int) (int, bool) {
	for tries := 0; tries < len(rooms); tries++ {
		idx := (cursor + tries) % len(rooms)
		if len(buckets[idx]) < rooms[idx].Capacity() {
			return idx, true
		}
	}
	return 0, false
}
