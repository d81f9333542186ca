package vulkan

import (
	"errors"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkcube/engine/renderer"
	"github.com/stretchr/testify/assert"
)

func TestVulkanResultString(t *testing.T) {
	assert.Equal(t, "VK_SUCCESS", VulkanResultString(vk.Success, false))
	assert.Equal(t, "VK_ERROR_OUT_OF_DATE_KHR", VulkanResultString(vk.ErrorOutOfDate, false))
	assert.Contains(t, VulkanResultString(vk.ErrorDeviceLost, true), "has been lost")
	assert.Equal(t, "VK_RESULT(12345)", VulkanResultString(vk.Result(12345), false))
}

func TestVulkanResultIsSuccess(t *testing.T) {
	assert.True(t, VulkanResultIsSuccess(vk.Success))
	assert.True(t, VulkanResultIsSuccess(vk.Suboptimal))
	assert.True(t, VulkanResultIsSuccess(vk.Timeout))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorOutOfDate))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorDeviceLost))
}

func TestNewResultError(t *testing.T) {
	assert.NoError(t, NewResultError("vkCreateFence", vk.Success))

	err := NewResultError("vkCreateFence", vk.ErrorOutOfHostMemory)
	assert.EqualError(t, err, "vkCreateFence: VK_ERROR_OUT_OF_HOST_MEMORY")

	var re *ResultError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, vk.ErrorOutOfHostMemory, re.Result)
}

func TestPresentStatus(t *testing.T) {
	tests := []struct {
		result  vk.Result
		status  renderer.PresentStatus
		wantErr bool
	}{
		{vk.Success, renderer.StatusOptimal, false},
		{vk.Suboptimal, renderer.StatusSuboptimal, false},
		{vk.ErrorOutOfDate, renderer.StatusOutOfDate, false},
		{vk.ErrorSurfaceLost, renderer.StatusOptimal, true},
		{vk.ErrorDeviceLost, renderer.StatusOptimal, true},
	}
	for _, tt := range tests {
		t.Run(VulkanResultString(tt.result, false), func(t *testing.T) {
			status, err := presentStatus("vkQueuePresentKHR", tt.result)
			assert.Equal(t, tt.status, status)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, uint32(5), Clamp(uint32(1), 5, 10))
	assert.Equal(t, uint32(10), Clamp(uint32(11), 5, 10))
	assert.Equal(t, uint32(7), Clamp(uint32(7), 5, 10))
	assert.Equal(t, float32(16), Clamp(float32(22.5), 1, 16))
}

func TestVulkanSafeString(t *testing.T) {
	assert.Equal(t, "VK_KHR_swapchain\x00", VulkanSafeString("VK_KHR_swapchain"))
	assert.Equal(t, "a\x00", VulkanSafeString("a\x00"))
	assert.Equal(t, "\x00", VulkanSafeString(""))

	in := []string{"a", "b\x00"}
	assert.Equal(t, []string{"a\x00", "b\x00"}, VulkanSafeStrings(in))
	assert.Equal(t, "a", in[0], "input is left untouched")
}
