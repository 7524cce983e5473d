package mesh

// Point is a beacon position in a scanner's integer coordinate frame.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	Z int `json:"z" yaml:"z"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Manhattan returns the L1 distance between p and q.
func (p Point) Manhattan(q Point) int {
	d := p.Sub(q)
	return abs(d.X) + abs(d.Y) + abs(d.Z)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Rotation is an axis-aligned rotation: a signed permutation matrix with
// determinant +1. Row-major.
type Rotation [3][3]int

// Transform maps a scanner's local frame into the global frame:
// global = Rotation * local + Translation
type Transform struct {
	Rotation    Rotation `json:"rotation"`
	Translation Point    `json:"translation"`
}

// Scanner is a sensor with its locally detected beacons. Transform stays nil
// until the scanner has been integrated into the global frame.
type Scanner struct {
	Name      string
	Beacons   *PointSet
	Transform *Transform

	index  *DistanceIndex
	report uint64
}

// NewScanner creates a scanner owning the given beacons.
func NewScanner(name string, beacons []Point) *Scanner {
	s := &Scanner{
		Name:    name,
		Beacons: NewPointSet(beacons...),
	}
	s.report = hashPoints(s.Beacons.Points())
	s.reindex()
	return s
}

// Index returns the distance index for the scanner's current beacon set.
func (s *Scanner) Index() *DistanceIndex {
	return s.index
}

// Integrated reports whether the scanner has a resolved transform.
func (s *Scanner) Integrated() bool {
	return s.Transform != nil
}

// Merge adds points to the scanner's beacon set and rebuilds the distance
// index when the set grew. Returns the number of points added.
func (s *Scanner) Merge(points []Point) int {
	added := s.Beacons.Merge(points)
	if added > 0 {
		s.reindex()
	}
	return added
}

func (s *Scanner) reindex() {
	s.index = NewDistanceIndex(s.Beacons.Points())
}

// ScannerPose is a scanner's resolved placement in the global frame.
type ScannerPose struct {
	Name        string   `json:"name"`
	Rotation    Rotation `json:"rotation"`
	Translation Point    `json:"translation"`
}

// Summary is the reportable outcome of an assembly run.
type Summary struct {
	Reference    string        `json:"reference"`
	BeaconCount  int           `json:"beaconCount"`
	MaxManhattan int           `json:"maxManhattan"`
	Scanners     []ScannerPose `json:"scanners"`
	Timestamp    int64         `json:"timestamp"`
}

// AssemblyConfig controls overlap detection and pass execution.
type AssemblyConfig struct {
	MinOverlap int `yaml:"minOverlap,omitempty" json:"minOverlap,omitempty"` // Shared distances required per candidate beacon (default 12)
	Workers    int `yaml:"workers,omitempty" json:"workers,omitempty"`       // Parallel overlap searches per pass; <=1 is sequential
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// RenderConfig holds defaults for map rendering.
type RenderConfig struct {
	Scale       float64 `yaml:"scale,omitempty" json:"scale,omitempty"`             // Pixels per world unit for raster output
	Padding     float64 `yaml:"padding,omitempty" json:"padding,omitempty"`         // Padding in world units
	GridSpacing float64 `yaml:"gridSpacing,omitempty" json:"gridSpacing,omitempty"` // Grid spacing in world units; 0 disables
	Resolution  float64 `yaml:"resolution,omitempty" json:"resolution,omitempty"`   // Vector PNG DPI
}

// Config represents the full configuration file
type Config struct {
	Input     string         `yaml:"input,omitempty" json:"input,omitempty"`
	Reference string         `yaml:"reference,omitempty" json:"reference,omitempty"` // Scanner whose frame is global; default first scanner
	Assembly  AssemblyConfig `yaml:"assembly,omitempty" json:"assembly,omitempty"`
	MQTT      MQTTConfig     `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`
	Render    RenderConfig   `yaml:"render,omitempty" json:"render,omitempty"`
}
