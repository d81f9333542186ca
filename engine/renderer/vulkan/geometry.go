package vulkan

import (
	vk "github.com/goki/vulkan"
)

/**
 * @brief Vertex and index buffers of a static indexed mesh.
 */
type VulkanGeometry struct {
	VertexBuffer *VulkanBuffer
	IndexBuffer  *VulkanBuffer
	/** @brief The vertex count. */
	VertexCount uint32
	/** @brief The index count. */
	IndexCount uint32
	IndexType  vk.IndexType
}

// GeometryCreate uploads vertices and 16-bit indices into device local buffers.
func GeometryCreate(context *VulkanContext, vertices []byte, vertexCount uint32, indices []byte, indexCount uint32) (*VulkanGeometry, error) {
	geometry := &VulkanGeometry{
		VertexCount: vertexCount,
		IndexCount:  indexCount,
		IndexType:   vk.IndexTypeUint16,
	}

	vertexBuffer, err := DeviceLocalBufferCreate(context, vertices, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return nil, err
	}
	geometry.VertexBuffer = vertexBuffer

	indexBuffer, err := DeviceLocalBufferCreate(context, indices, vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		geometry.Destroy(context)
		return nil, err
	}
	geometry.IndexBuffer = indexBuffer

	return geometry, nil
}

// Draw binds the buffers and records one indexed draw of every index.
func (g *VulkanGeometry) Draw(commandBuffer *VulkanCommandBuffer) {
	vk.CmdBindVertexBuffers(commandBuffer.Handle, 0, 1, []vk.Buffer{g.VertexBuffer.Handle}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(commandBuffer.Handle, g.IndexBuffer.Handle, 0, g.IndexType)
	vk.CmdDrawIndexed(commandBuffer.Handle, g.IndexCount, 1, 0, 0, 0)
}

func (g *VulkanGeometry) Destroy(context *VulkanContext) {
	if g.IndexBuffer != nil {
		g.IndexBuffer.Destroy(context)
		g.IndexBuffer = nil
	}
	if g.VertexBuffer != nil {
		g.VertexBuffer.Destroy(context)
		g.VertexBuffer = nil
	}
}
