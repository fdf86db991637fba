// Copyright 2025 The vkernel Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vkernel/vfs/buf"
	"github.com/vkernel/vfs/cfg"
	"github.com/vkernel/vfs/internal/logger"
	"github.com/vkernel/vfs/kernel"
)

var (
	cfgFile      string
	unmarshalErr error
	toolConfig   = cfg.Default()
)

var rootCmd = &cobra.Command{
	Use:   "vfstool",
	Short: "Format and inspect file system images",
	Long: `vfstool formats block-device images with an empty file system and
moves data in and out of them through the kernel's own syscall layer.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := toolConfig.Validate(); err != nil {
			return err
		}
		logger.SetOutput(os.Stderr, severityLevel(toolConfig.LogSeverity))
		return nil
	},
}

func severityLevel(name string) slog.Level {
	switch name {
	case "TRACE":
		return logger.LevelTrace
	case "DEBUG":
		return logger.LevelDebug
	case "WARNING":
		return logger.LevelWarning
	case "ERROR":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

// Execute runs the tool.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config-file", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(
		&toolConfig.LogSeverity, "log-severity", toolConfig.LogSeverity,
		"Minimum log severity: TRACE, DEBUG, INFO, WARNING or ERROR")
}

func initConfig() {
	if cfgFile == "" {
		return
	}

	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		unmarshalErr = err
		return
	}
	unmarshalErr = viper.Unmarshal(&toolConfig)
}

// bootImage opens an image file and boots a kernel plus one task over
// it. The caller must Close the returned disk.
func bootImage(path string) (*kernel.Kernel, *kernel.Proc, *buf.FileDisk, error) {
	disk, err := buf.OpenFileDisk(path)
	if err != nil {
		return nil, nil, nil, err
	}

	k, err := kernel.New(kernel.Options{
		Disk:       disk,
		ConsoleIn:  os.Stdin,
		ConsoleOut: os.Stdout,
	})
	if err != nil {
		disk.Close()
		return nil, nil, nil, err
	}

	p := k.NewProc("vfstool", 1<<20)
	return k, p, disk, nil
}

// stageStr copies a NUL-terminated string into the task's memory at
// addr and returns addr for convenience.
func stageStr(p *kernel.Proc, addr uint64, s string) (uint64, error) {
	if err := p.Mem.CopyOut(addr, append([]byte(s), 0)); err != nil {
		return 0, err
	}
	return addr, nil
}
