package session

// nextTrack splits the queue into its front track and the remainder.
func nextTrack(queue []Track) (Track, []Track, bool) {
	if len(queue) == 0 {
		return Track{}, nil, false
	}
	return queue[0], queue[1:], true
}
