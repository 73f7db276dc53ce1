// Copyright 2026 Prism Authors
// Use of this source code is governed by the project license.

/*
# 概述

包 llm 定义 Prism 与大语言模型交互的统一契约。

所有上游模型（OpenAI 兼容端点、本地推理服务）通过 Provider 接口接入，
管线各节点（意图路由、文档评分、答案生成、幻觉检查）只依赖该接口，
不感知具体厂商。

# 核心类型

  - Provider — 统一的 LLM 适配接口（同步补全 + 流式输出 + 健康检查）
  - ChatRequest / ChatResponse / StreamChunk — 请求与响应结构
  - Error / ErrorCode — 统一错误码，用于对齐 HTTP 状态、可重试性与降级策略
*/
package llm
