// ArtSeek 命令行入口
//
//	ArtSeek crawl   抓取两个馆藏目录（--cron 周期执行）
//	ArtSeek extract 导出待下载图片清单
//	ArtSeek ingest  读取图片分片并写入向量
//	ArtSeek index   构建 IVF 索引文件
//	ArtSeek serve   启动查询服务
package main

import (
	"fmt"
	"os"

	"ArtSeek/cmd/ArtSeek/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
