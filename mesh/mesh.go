package mesh

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/globemesh/types"
	"github.com/notargets/globemesh/utils"
)

// Face represents a face of an element
type Face struct {
	Vertices [4]int // Sorted vertex indices
	Element  int    // Parent element
	LocalID  int    // Local face ID within element
}

// Mesh is the hexahedral connectivity of one slice
type Mesh struct {
	// Geometry
	Vertices []r3.Vec

	// Element data
	Elements    [][8]int
	ElementTags []types.ElementTag

	// Connectivity (built during initialization)
	EToE [][6]int // Element to element connectivity, -1 on the boundary
	EToF [][6]int // Element to face connectivity

	// Face data
	Faces   []Face
	FaceMap map[[4]int]int // Map from sorted vertices to face ID
	Shared  []int          // Number of elements using each face

	// Mesh statistics
	NumElements int
	NumVertices int
	NumFaces    int
}

func NewMesh(vertices []r3.Vec, elements [][8]int, tags []types.ElementTag) *Mesh {
	return &Mesh{
		Vertices:    vertices,
		Elements:    elements,
		ElementTags: tags,
		FaceMap:     make(map[[4]int]int),
		NumElements: len(elements),
		NumVertices: len(vertices),
	}
}

// GetElementFaces returns the four vertices of each hexahedron face, wound
// outward
func GetElementFaces(vertices [8]int) (faces [6][4]int) {
	for f, fv := range utils.HexFaces {
		for i, c := range fv {
			faces[f][i] = vertices[c]
		}
	}
	return
}

func faceKey(fv [4]int) [4]int {
	sort.Ints(fv[:])
	return fv
}

// BuildConnectivity builds element-to-element and face connectivity. A face
// used by more than two elements is an error.
func (m *Mesh) BuildConnectivity() (err error) {
	m.EToE = make([][6]int, m.NumElements)
	m.EToF = make([][6]int, m.NumElements)
	m.Faces = m.Faces[:0]
	m.Shared = m.Shared[:0]

	for elemID, vertices := range m.Elements {
		for i := range m.EToE[elemID] {
			m.EToE[elemID][i] = -1
			m.EToF[elemID][i] = -1
		}
		for localFaceID, faceVerts := range GetElementFaces(vertices) {
			key := faceKey(faceVerts)
			if faceID, exists := m.FaceMap[key]; exists {
				// Face already exists - this is an interior face
				m.Shared[faceID]++
				if m.Shared[faceID] > 2 {
					return fmt.Errorf("face %v is shared by %d elements", key, m.Shared[faceID])
				}
				face := &m.Faces[faceID]
				neighborElem := face.Element
				neighborLocalID := face.LocalID

				m.EToE[elemID][localFaceID] = neighborElem
				m.EToE[neighborElem][neighborLocalID] = elemID

				m.EToF[elemID][localFaceID] = faceID
				m.EToF[neighborElem][neighborLocalID] = faceID
			} else {
				faceID := len(m.Faces)
				m.Faces = append(m.Faces, Face{
					Vertices: key,
					Element:  elemID,
					LocalID:  localFaceID,
				})
				m.Shared = append(m.Shared, 1)
				m.FaceMap[key] = faceID
				m.EToF[elemID][localFaceID] = faceID
			}
		}
	}
	m.NumFaces = len(m.Faces)
	return
}

// BoundaryFaces returns the faces used by a single element.
func (m *Mesh) BoundaryFaces() (faces []Face) {
	for id, f := range m.Faces {
		if m.Shared[id] == 1 {
			faces = append(faces, f)
		}
	}
	return
}

// CheckConforming builds the connectivity and passes every boundary face to
// allowed. A hanging node or a mismatched face shows up either as a face
// shared by three elements or as a boundary face nothing accounts for.
func (m *Mesh) CheckConforming(allowed func(f Face) error) (err error) {
	if err = m.BuildConnectivity(); err != nil {
		return
	}
	for _, f := range m.BoundaryFaces() {
		if err = allowed(f); err != nil {
			return
		}
	}
	return
}

// MinJacobian returns the smallest corner Jacobian over all elements and the
// element it belongs to.
func (m *Mesh) MinJacobian() (minDet float64, elem int) {
	elem = -1
	for k, el := range m.Elements {
		var p [8]r3.Vec
		for i, v := range el {
			p[i] = m.Vertices[v]
		}
		for _, det := range utils.HexCornerJacobians(p) {
			if elem < 0 || det < minDet {
				minDet, elem = det, k
			}
		}
	}
	return
}

// PrintStatistics prints mesh statistics
func (m *Mesh) PrintStatistics(w io.Writer) {
	fmt.Fprintf(w, "Mesh Statistics:\n")
	fmt.Fprintf(w, "  Vertices: %d\n", m.NumVertices)
	fmt.Fprintf(w, "  Elements: %d\n", m.NumElements)
	fmt.Fprintf(w, "  Faces: %d\n", m.NumFaces)

	tagCounts := make(map[types.ElementTag]int)
	for _, t := range m.ElementTags {
		tagCounts[t]++
	}
	tags := make([]types.ElementTag, 0, len(tagCounts))
	for t := range tagCounts {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Flag() < tags[j].Flag() })
	fmt.Fprintf(w, "  Element tags:\n")
	for _, t := range tags {
		fmt.Fprintf(w, "    %s: %d\n", t, tagCounts[t])
	}

	boundaryFaces := 0
	for i := 0; i < m.NumElements; i++ {
		for _, neighbor := range m.EToE[i] {
			if neighbor < 0 {
				boundaryFaces++
			}
		}
	}
	fmt.Fprintf(w, "  Boundary faces: %d\n", boundaryFaces)
}
