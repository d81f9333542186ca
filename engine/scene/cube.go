package scene

import (
	"unsafe"
)

// Vertex is the interleaved layout consumed by the vertex shader:
// location 0 is the position, location 1 the texture coordinate.
type Vertex struct {
	Pos      [3]float32
	TexCoord [2]float32
}

var (
	VertexStride         = uint32(unsafe.Sizeof(Vertex{}))
	VertexPosOffset      = uint32(unsafe.Offsetof(Vertex{}.Pos))
	VertexTexCoordOffset = uint32(unsafe.Offsetof(Vertex{}.TexCoord))
)

// CubeVertices are the eight corners of a unit cube centred on the origin.
var CubeVertices = [8]Vertex{
	{Pos: [3]float32{-0.5, -0.5, 0.5}, TexCoord: [2]float32{0, 0}},
	{Pos: [3]float32{0.5, -0.5, 0.5}, TexCoord: [2]float32{1, 0}},
	{Pos: [3]float32{0.5, 0.5, 0.5}, TexCoord: [2]float32{1, 1}},
	{Pos: [3]float32{-0.5, 0.5, 0.5}, TexCoord: [2]float32{0, 1}},

	{Pos: [3]float32{-0.5, -0.5, -0.5}, TexCoord: [2]float32{1, 0}},
	{Pos: [3]float32{0.5, -0.5, -0.5}, TexCoord: [2]float32{0, 0}},
	{Pos: [3]float32{0.5, 0.5, -0.5}, TexCoord: [2]float32{0, 1}},
	{Pos: [3]float32{-0.5, 0.5, -0.5}, TexCoord: [2]float32{1, 1}},
}

// CubeIndices draw the six faces as two triangles each.
var CubeIndices = [36]uint16{
	0, 1, 2, 2, 3, 0, // top
	4, 5, 6, 6, 7, 4, // bottom
	3, 2, 6, 6, 7, 3,
	0, 1, 5, 5, 4, 0,
	4, 0, 3, 3, 7, 4,
	1, 5, 6, 6, 2, 1,
}

// VertexBytes returns the vertices as a byte slice ready for upload.
func VertexBytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&CubeVertices[0])), len(CubeVertices)*int(VertexStride))
}

// IndexBytes returns the indices as a byte slice ready for upload.
func IndexBytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&CubeIndices[0])), len(CubeIndices)*2)
}
