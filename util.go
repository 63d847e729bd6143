package celltree

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

// assert flags programmer errors; it never fires on bad user input.
func assert(cond bool, msg string) {
	if !cond {
		panic(msg)
	}
}
