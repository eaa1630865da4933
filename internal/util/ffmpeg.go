package util

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ProbeVideoDuration 探测视频时长（秒），用于上传资源时回填 DurationSeconds
func ProbeVideoDuration(videoPath string) (int, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return 0, fmt.Errorf("视频文件不存在: %v", err)
	}

	jsonOutput, err := ffmpeg.Probe(videoPath)
	if err != nil {
		return 0, fmt.Errorf("获取视频信息失败: %v", err)
	}

	var result struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(jsonOutput), &result); err != nil {
		return 0, fmt.Errorf("解析视频信息失败: %v", err)
	}

	seconds, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("解析视频时长失败: %v", err)
	}
	return int(seconds), nil
}
