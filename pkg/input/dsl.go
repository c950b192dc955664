package input

import "time"

// Sleep pauses for d.
func Sleep(d time.Duration) Step { return Step{Kind: Pause, Delay: d} }

// Down presses k. Keys without a scancode yield false.
func Down(k Key) (Step, bool) {
	sc, ok := k.Scan()
	return Step{Kind: KeyDown, Scan: sc}, ok
}

// Up releases k.
func Up(k Key) (Step, bool) {
	sc, ok := k.Scan()
	return Step{Kind: KeyUp, Scan: sc}, ok
}

// Tap presses and releases k.
func Tap(k Key) []Step {
	var steps []Step
	steps = appendDown(steps, k)
	steps = appendUp(steps, k)

	return steps
}

// Chord taps main while holding mods, releasing them in reverse order.
func Chord(mods []Key, main Key) []Step {
	var steps []Step
	for _, m := range mods {
		steps = appendDown(steps, m)
	}

	steps = append(steps, Tap(main)...)

	for i := len(mods) - 1; i >= 0; i-- {
		steps = appendUp(steps, mods[i])
	}

	return steps
}

// Hold keeps main pressed for d with mods held.
func Hold(mods []Key, main Key, d time.Duration) []Step {
	var steps []Step
	for _, m := range mods {
		steps = appendDown(steps, m)
	}

	steps = appendDown(steps, main)
	steps = append(steps, Sleep(d))
	steps = appendUp(steps, main)

	for i := len(mods) - 1; i >= 0; i-- {
		steps = appendUp(steps, mods[i])
	}

	return steps
}

// TapWithDelay taps k and then waits d.
func TapWithDelay(k Key, d time.Duration) []Step {
	return append(Tap(k), Sleep(d))
}

// Click presses and releases b.
func Click(b Button) []Step {
	return []Step{{Kind: MouseDown, Button: b}, {Kind: MouseUp, Button: b}}
}

// ClickN clicks b n times, waiting between clicks when between is positive.
func ClickN(b Button, n int, between time.Duration) []Step {
	steps := make([]Step, 0, n*3)
	for i := range n {
		steps = append(steps, Click(b)...)
		if i+1 < n && between > 0 {
			steps = append(steps, Sleep(between))
		}
	}

	return steps
}

// Seq concatenates step sequences.
func Seq(parts ...[]Step) []Step {
	var steps []Step
	for _, p := range parts {
		steps = append(steps, p...)
	}

	return steps
}

func appendDown(steps []Step, k Key) []Step {
	if s, ok := Down(k); ok {
		steps = append(steps, s)
	}

	return steps
}

func appendUp(steps []Step, k Key) []Step {
	if s, ok := Up(k); ok {
		steps = append(steps, s)
	}

	return steps
}
