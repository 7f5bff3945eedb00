package utils

import (
	"os"
	"path/filepath"
)

const appDirName = "agentchat"

// GetConfigDir 获取跨平台的配置目录
// Windows: %APPDATA%/agentchat
// Linux/macOS: $XDG_CONFIG_HOME/agentchat 或 ~/.config/agentchat
func GetConfigDir() (string, error) {
	// 检查是否设置了自定义配置目录
	if configHome := os.Getenv("AGENTCHAT_CONFIG_HOME"); configHome != "" {
		return configHome, nil
	}

	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, appDirName), nil
	}

	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appDirName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", appDirName), nil
}

// GetConfigPathForDisplay 获取用于显示的配置路径字符串
func GetConfigPathForDisplay() string {
	dir, err := GetConfigDir()
	if err != nil {
		return "~/.config/" + appDirName + "/config.yaml"
	}
	return filepath.Join(dir, "config.yaml")
}
