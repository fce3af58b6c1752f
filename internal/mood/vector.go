package mood

// MoodVector is a six-dimensional affective state. Valence, arousal and
// dominance are the primary dimensions; curiosity, creativity and sociability
// are secondary. Every dimension stays within its declared range after every
// update.
type MoodVector struct {
	Valence     float64 `json:"valence"`
	Arousal     float64 `json:"arousal"`
	Dominance   float64 `json:"dominance"`
	Curiosity   float64 `json:"curiosity"`
	Creativity  float64 `json:"creativity"`
	Sociability float64 `json:"sociability"`
}

// Range declares the legal interval for one dimension.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Bounds declares the range for each dimension.
type Bounds struct {
	Valence     Range `json:"valence"`
	Arousal     Range `json:"arousal"`
	Dominance   Range `json:"dominance"`
	Curiosity   Range `json:"curiosity"`
	Creativity  Range `json:"creativity"`
	Sociability Range `json:"sociability"`
}

// DefaultBounds: valence is bipolar, everything else unipolar.
func DefaultBounds() Bounds {
	unipolar := Range{Min: 0, Max: 1}
	return Bounds{
		Valence:     Range{Min: -1, Max: 1},
		Arousal:     unipolar,
		Dominance:   unipolar,
		Curiosity:   unipolar,
		Creativity:  unipolar,
		Sociability: unipolar,
	}
}

// refs exposes the dimensions for in-place iteration, paired index-for-index
// with Bounds.ranges.
func (v *MoodVector) refs() [6]*float64 {
	return [6]*float64{&v.Valence, &v.Arousal, &v.Dominance, &v.Curiosity, &v.Creativity, &v.Sociability}
}

func (b Bounds) ranges() [6]Range {
	return [6]Range{b.Valence, b.Arousal, b.Dominance, b.Curiosity, b.Creativity, b.Sociability}
}

// Clamped returns a copy with every dimension forced into its range.
func (v MoodVector) Clamped(b Bounds) MoodVector {
	out := v
	refs := out.refs()
	for i, r := range b.ranges() {
		if *refs[i] < r.Min {
			*refs[i] = r.Min
		}
		if *refs[i] > r.Max {
			*refs[i] = r.Max
		}
	}
	return out
}

// InBounds reports whether every dimension lies within its range.
func (v MoodVector) InBounds(b Bounds) bool {
	refs := v.refs()
	for i, r := range b.ranges() {
		if *refs[i] < r.Min || *refs[i] > r.Max {
			return false
		}
	}
	return true
}

// Add returns v + d component-wise, unclamped.
func (v MoodVector) Add(d MoodVector) MoodVector {
	out := v
	or, dr := out.refs(), d.refs()
	for i := range or {
		*or[i] += *dr[i]
	}
	return out
}

// Scale returns v scaled by f component-wise.
func (v MoodVector) Scale(f float64) MoodVector {
	out := v
	for _, p := range out.refs() {
		*p *= f
	}
	return out
}

// Blend returns alpha·v + (1−alpha)·w component-wise.
func (v MoodVector) Blend(w MoodVector, alpha float64) MoodVector {
	return v.Scale(alpha).Add(w.Scale(1 - alpha))
}

// IsZero reports whether every dimension is exactly zero.
func (v MoodVector) IsZero() bool {
	return v == MoodVector{}
}
