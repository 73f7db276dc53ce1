// 版权所有 2026 Prism Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 service 是查询入口的编排层：响应缓存 → 熔断检查 → 管线执行 →
结果缓存。管线失败或熔断打开时转入单程降级路径（向量检索 + 直接生成），
降级也失败才把错误交还调用方。

带 app_context 的请求在进入管线前被改写为携带用户实际计算结果的
上下文查询，且永不缓存。
*/
package service
