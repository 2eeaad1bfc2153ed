package timecode

// Span locates a clip on the device timeline.
type Span struct {
	Start    string
	Duration string
}

// Input is everything the engine needs from transport and clip state.
type Input struct {
	VideoFormat string
	Timecode    string
	// Clip is the active clip's span when known.
	Clip *Span
}

// Display is the computed count-up and count-down pair.
type Display struct {
	Rate      *Rate
	CountUp   Value
	CountDown Value
	// CurrentFrame is the absolute frame of CountUp; -1 when not counted.
	CurrentFrame int
	Err          error
}

// Compute derives the display timecodes. It never fails; problems are
// reported through Display.Err and leave the affected values as placeholders.
func Compute(in Input) Display {
	out := Display{CountUp: Placeholder(), CountDown: Placeholder(), CurrentFrame: -1}

	rate, ok := Lookup(in.VideoFormat)
	if !ok {
		if in.Timecode == "" {
			return out
		}
		up, err := Parse(in.Timecode, nil)
		out.CountUp = up
		out.Err = err
		return out
	}
	out.Rate = &rate
	if in.Timecode == "" {
		return out
	}

	up, err := Parse(in.Timecode, &rate)
	if err != nil {
		out.Err = err
		return out
	}
	out.CountUp = up
	out.CurrentFrame = up.TotalFrames

	if in.Clip == nil {
		return out
	}
	start, err := Parse(in.Clip.Start, &rate)
	if err != nil {
		out.Err = err
		return out
	}
	length, err := Parse(in.Clip.Duration, &rate)
	if err != nil {
		out.Err = err
		return out
	}
	out.CountDown = FromFrames(Remaining(length.TotalFrames, start.TotalFrames, up.TotalFrames), rate)
	return out
}

// Remaining is the frames left in a clip, never negative.
func Remaining(clipFrames, clipStart, current int) int {
	left := clipFrames - (current - clipStart) - 1
	if left < 0 {
		return 0
	}
	return left
}
