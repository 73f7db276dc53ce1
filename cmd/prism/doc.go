// Copyright (c) Prism Authors.
// Licensed under the MIT License.

/*
Package main 提供 Prism 查询服务的程序入口。

# 概述

cmd/prism 是 Prism 检索增强查询服务的可执行入口，提供 HTTP API 服务、
健康检查和版本查询等子命令。程序支持 YAML 配置文件加载、结构化日志
（zap）、Prometheus 指标采集以及 OpenTelemetry 遥测。

# 核心类型

  - Server           — 主服务器，装配检索管线、缓存、熔断器并管理优雅关闭
  - Middleware        — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - responseWriter    — 包装 http.ResponseWriter 以捕获状态码

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID、RequestLogger、RateLimiter（基于 IP）
  - 管线装配：路由 → 混合检索 → 评分 → 重排序 → 生成（→ 幻觉自检）
  - 降级链路：缓存 → 熔断器 → 管线失败时的单轮向量检索兜底
  - 优雅关闭：信号监听 → 关闭 HTTP → 刷新遥测 → Wait
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
