// 版权所有 2026 Prism Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

// 包 handlers 提供 HTTP 处理器：查询与流式查询、健康检查、
// 缓存与熔断器管理、反馈收集。路由注册在 cmd/prism 完成。
package handlers
