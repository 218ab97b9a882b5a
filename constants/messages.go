package constants

var MESSAGES_EN_MAP = map[string]string{
	"tap_forwarded":     "Tap forwarded",
	"tap_failed":        "Tap failed",
	"outside_content":   "Click is outside the visible content area",
	"invalid_geometry":  "Panel geometry is incomplete, nothing rendered",
	"no_devices":        "No devices connected.",
	"connected_devices": "Connected devices:",
	"elements":          "Elements",
	"dropped":           "Dropped",
	"content_rect":      "Content rectangle",
	"saved":             "Saved",
	"server_started":    "Server listening",
}

var MESSAGES_ZH_MAP = map[string]string{
	"tap_forwarded":     "点击已转发",
	"tap_failed":        "点击失败",
	"outside_content":   "点击位置不在画面内容区域内",
	"invalid_geometry":  "面板几何信息不完整，未渲染",
	"no_devices":        "没有已连接的设备。",
	"connected_devices": "已连接的设备：",
	"elements":          "元素",
	"dropped":           "已丢弃",
	"content_rect":      "内容区域",
	"saved":             "已保存",
	"server_started":    "服务已启动",
}
